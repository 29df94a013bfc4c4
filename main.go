package main

import "github.com/DaniruKun/yolotrain/cmd"

func main() {
	cmd.Execute()
}
