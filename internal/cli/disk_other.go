// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !unix && !windows

package cli

import "errors"

func freeDiskSpace(string) (uint64, error) {
	return 0, errors.New("not supported on this platform")
}
