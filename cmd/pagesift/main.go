// Command pagesift ingests web and file resources into clean text: fetch,
// detect, process, clean, and hand the result to a knowledge sink.
package main

import "github.com/pagesift/pagesift/cmd/pagesift/cli"

func main() {
	cli.Execute()
}
