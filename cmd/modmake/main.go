// Modmake builds the module graph of a JavaScript project incrementally.
package main

import "github.com/albertocavalcante/modmake/cmd/modmake/internal/cli"

func main() {
	cli.Execute()
}
