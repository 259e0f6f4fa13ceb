// Command groupbench runs one group-by/mean/filter/count query through
// several engines and reports how long each took.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/paveg/groupbench/internal/logging"
)

var exit = os.Exit

func main() {
	defer logging.Sync()

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exit(1)
	}
}
