// Command governor runs rate-limited workers against a fixed-interval token
// bucket.
//
//	governor run --capacity 10 --interval 1s --workers 4 --metrics-addr :9090
package main

import "github.com/vnykmshr/governor/internal/cli"

func main() {
	cli.Execute()
}
