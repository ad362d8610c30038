package debug

import (
	"fmt"
	"os"
	"strconv"

	"github.com/goccy/go-json"
)

type debug struct {
	Mutate  bool
	Delta   bool
	Ledger  bool
	Storage bool
}

var d *debug

func init() {
	d = &debug{}
	d.Mutate = boolEnv("FXC_DEBUG_MUTATE")
	d.Delta = boolEnv("FXC_DEBUG_DELTA")
	d.Ledger = boolEnv("FXC_DEBUG_LEDGER")
	d.Storage = boolEnv("FXC_DEBUG_STORAGE")
}

func boolEnv(v string) bool {
	x := os.Getenv(v)
	if x == "" {
		return false
	}
	b, _ := strconv.ParseBool(x)
	return b
}

func Mutate() bool {
	return d.Mutate
}
func Delta() bool {
	return d.Delta
}
func Ledger() bool {
	return d.Ledger
}
func Storage() bool {
	return d.Storage
}

func Logf(msg string, args ...any) {
	for i := range args {
		switch x := args[i].(type) {
		case map[string]any, []any:
			d, err := json.MarshalIndent(x, "   |", "  ")
			if err != nil {
				args[i] = fmt.Sprintf("%v", x)
				continue
			}
			args[i] = string(d)
		case fmt.Stringer:
			args[i] = x.String()
		}
	}
	fmt.Fprintf(os.Stderr, msg, args...)
}
