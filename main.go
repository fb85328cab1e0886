package main

import "github.com/BerniceZTT/welfare_end/cmd"

func main() {
	cmd.Execute()
}
