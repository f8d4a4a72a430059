// Command scraper extracts rendered page text with a headless browser and
// crawls mirror archives for defaced domains.
package main

import (
	"context"
	"os"

	"github.com/baont182004/BiLSTM-defacement/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background()))
}
