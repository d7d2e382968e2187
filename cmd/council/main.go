package main

import "github.com/Personaz1/openclaw-council/internal/cli"

func main() {
	cli.Execute()
}
