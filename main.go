// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/peru/peru/cmd/peru"

func main() {
	cmd.Execute()
}
