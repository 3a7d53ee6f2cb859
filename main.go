package main

import "webtrail/cmd"

func main() {
	cmd.Execute()
}
