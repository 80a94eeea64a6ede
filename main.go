package main

import "github.com/KaramelBytes/dataprofiler/cmd"

func main() {
	cmd.Execute()
}
