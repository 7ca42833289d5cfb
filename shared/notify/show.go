//go:build !windows

// Author: Toluwalase Mebaanne

package notify

import "github.com/gen2brain/beeep"

func show(title, body string) error {
	return beeep.Notify(title, body, "")
}
