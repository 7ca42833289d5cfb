// Author: Toluwalase Mebaanne

package handlers

// Builtins returns the built-in variants in detection order. php is only
// detected by its leading "<?php"; bare "//" content belongs to source.
func Builtins() []ContentHandler {
	return []ContentHandler{
		&Variant{
			Name:              "php",
			CommentPrefix:     "//",
			Exts:              []string{".php"},
			DeclarationLines:  2,
			Directives:        []string{"<?php"},
			RequiredDirective: "<?php",
		},
		&Variant{
			Name:             "markup",
			CommentPrefix:    "<!--",
			CommentSuffix:    "-->",
			Exts:             []string{".html", ".htm", ".xhtml", ".xml", ".vue", ".svelte", ".md"},
			DeclarationLines: 2,
			Directives:       []string{"<!DOCTYPE", "<!doctype", "<?xml"},
		},
		&Variant{
			Name:             "style",
			CommentPrefix:    "/*",
			CommentSuffix:    "*/",
			Exts:             []string{".css", ".scss", ".less"},
			DeclarationLines: 1,
		},
		&Variant{
			Name:          "source",
			CommentPrefix: "//",
			Exts: []string{
				".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx",
				".go", ".java", ".kt", ".scala", ".swift", ".dart",
				".c", ".h", ".cc", ".cpp", ".hpp", ".cs", ".rs",
			},
			DeclarationLines: 2,
			Directives:       []string{"#!", `"use client"`, `'use client'`, `"use strict"`, `'use strict'`},
		},
		&Variant{
			Name:             "script",
			CommentPrefix:    "#",
			Exts:             []string{".py", ".sh", ".bash", ".zsh", ".rb", ".pl", ".ps1", ".yaml", ".yml", ".toml"},
			DeclarationLines: 2,
			Directives:       []string{"#!"},
			TrailingNewline:  true,
		},
	}
}
