package cfg

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/opsem/internal/ir"
)

func loopFunction() *ir.Function {
	mod := ir.NewModule("loop", nil)
	fn := mod.NewFunction("main", ir.FuncOf(ir.I32))
	entry := fn.NewBlock("entry")
	loop := fn.NewBlock("loop")
	exit := fn.NewBlock("exit")

	ir.NewBuilder(entry).Br(loop)
	b := ir.NewBuilder(loop)
	c := b.ICmp("c", ir.ICmpSLT, ir.Int(ir.I32, 1), ir.Int(ir.I32, 2))
	b.CondBr(c, loop, exit)
	ir.NewBuilder(exit).Ret(ir.Int(ir.I32, 0))
	return fn
}

func TestPrintDot(t *testing.T) {
	fn := loopFunction()

	var buf bytes.Buffer
	require.NoError(t, PrintDot(&buf, fn, PathEdges([]*ir.Block{fn.Block("entry"), fn.Block("loop")})...))

	expected := `
digraph "main" {
	mode="heir";
	splines="ortho";

	"ENTRY" -> "entry"
	"entry" -> "loop" [style=bold]
	"loop" -> "loop"
	"loop" -> "exit"
	"exit" -> "EXIT"
}
`
	assert.Equal(t, normalizeDotOutput(expected), normalizeDotOutput(buf.String()))
}

func TestWriteDotFile(t *testing.T) {
	fn := loopFunction()
	path := filepath.Join(t.TempDir(), "main.dot")
	require.NoError(t, WriteDotFile(path, fn))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), `digraph "main" {`))
}

func TestEdgesOfDeclaration(t *testing.T) {
	mod := ir.NewModule("decl", nil)
	assert.Empty(t, Edges(mod.Declare("ext", ir.FuncOf(ir.I32))))
}

func normalizeDotOutput(dot string) string {
	lines := strings.Split(dot, "\n")
	var normalized []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return strings.Join(normalized, "\n")
}
