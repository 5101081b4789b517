// Copyright (C) The RUBIC Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package main

import (
	"github.com/cruzpazv/RUBIC"
)

func main() {
	rubic.Main()
}
