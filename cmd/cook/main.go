// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command cook builds native libraries from recipes and publishes them as
// relocatable packages.
package main

import "github.com/goplus/cook/cmd/cook/internal"

func main() {
	internal.Execute()
}
