//go:build windows

// Author: Toluwalase Mebaanne

package notify

import "gopkg.in/toast.v1"

func show(title, body string) error {
	notification := toast.Notification{
		AppID:   appName,
		Title:   title,
		Message: body,
	}
	return notification.Push()
}
