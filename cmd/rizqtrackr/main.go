package main

import (
	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/cli"
)

func main() {
	cli.Execute()
}
