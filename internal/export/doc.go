// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes conversations out as Markdown or JSON.
//
// A Document is built either from the deck (the prompt that submitting a
// row would send) or from a saved console session.
//
// # Usage
//
//	doc, err := export.FromDeck(d, d.Len()-1, "mistral")
//	exp, err := export.ForFormat("md", nil)
//	data, err := exp.Export(doc)
//
// Markdown output starts with YAML front matter naming the model, the number
// of rows and the export time.
package export
