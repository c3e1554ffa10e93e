package formatter

import (
	"context"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/opsem/internal/ir"
	"github.com/gnolang/opsem/internal/opsem"
)

const counterModule = `
module: counter
globals:
  - name: limit
    type: i32
    init: [10, 0, 0, 0]
functions:
  - name: main
    ret: i32
    blocks:
      - name: entry
        insts:
          - {op: call, name: n, callee: "@nondet.int", type: i32}
          - {op: br, targets: [loop]}
      - name: loop
        insts:
          - op: phi
            name: i
            type: i32
            incoming:
              - {value: "i32 0", from: entry}
              - {value: "%next", from: loop}
          - {op: add, name: next, type: i32, args: ["%i", "1"]}
          - {op: icmp, pred: slt, name: c, args: ["%next", "%n"]}
          - {op: br, args: ["%c"], targets: [loop, exit]}
      - name: exit
        insts:
          - {op: ret, args: ["%next"]}
`

func run(t *testing.T, src string, names ...string) Report {
	t.Helper()
	mod, err := ir.LoadYAML([]byte(src))
	require.NoError(t, err)
	m, err := opsem.NewMachine(mod, opsem.DefaultConfig())
	require.NoError(t, err)

	main := mod.Function("main")
	path, err := opsem.ParsePath(main, names)
	require.NoError(t, err)
	res, err := m.NewContext().RunPath(context.Background(), path)
	require.NoError(t, err)
	return Report{Filename: "counter.yaml", Function: "main", Path: path, Result: res}
}

func TestFormatReport(t *testing.T) {
	color.NoColor = true

	out := FormatReport(run(t, counterModule, "entry", "loop", "exit"))

	assert.Contains(t, out, "path: counter.yaml @main\n")
	assert.Contains(t, out, " --> entry -> loop -> exit\n")
	assert.Contains(t, out, "side conditions (")
	assert.Contains(t, out, "  1 | ")
	assert.Contains(t, out, "bindings (")
	assert.Contains(t, out, "error flags (2):")
	assert.Contains(t, out, "globals (1):")
	assert.Contains(t, out, "global @limit")
	assert.NotContains(t, out, "approximated")
}

func TestFormatReportWithoutSideConditions(t *testing.T) {
	color.NoColor = true

	const single = `
module: single
functions:
  - name: main
    ret: i32
    blocks:
      - name: entry
        insts:
          - {op: ret, args: ["i32 0"]}
`
	out := FormatReport(run(t, single, "entry"))
	assert.Contains(t, out, "side conditions (0):\n  (none)\n")
	assert.NotContains(t, out, "globals")
}
