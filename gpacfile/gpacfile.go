package gpacfile

import (
	"os"

	"github.com/pkg/errors"

	"github.com/mvance/gpac/circuit"
	"github.com/mvance/gpac/gpacerr"
)

// Document is everything gpacfile.Load produces from one source file:
// every named circuit it defines, in definition order, plus a
// convenience pointer to the last one (the file's "main" circuit, per
// the CLI's single positional `<circuit-file>` usage).
type Document struct {
	Circuits map[string]*circuit.Circuit
	Order    []string
	Main     *circuit.Circuit
}

// Load reads and builds every circuit definition in the file at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "gpacfile.Load")
	}
	return LoadString(string(data))
}

// LoadString parses and builds every circuit definition in src.
func LoadString(src string) (*Document, error) {
	f, err := Parse(src)
	if err != nil {
		return nil, err
	}
	if len(f.order) == 0 {
		return nil, gpacerr.NewCircuitError("gpacfile.Load", "source defines no circuits")
	}
	circuits, err := Build(f)
	if err != nil {
		return nil, err
	}
	return &Document{
		Circuits: circuits,
		Order:    f.order,
		Main:     circuits[f.order[len(f.order)-1]],
	}, nil
}
