package ir

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const counterModule = `
module: counter
globals:
  - name: limit
    type: i32
    init: [10, 0, 0, 0]
  - name: table
    type: "[4 x i8]"
    zero: true
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

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	m, err := LoadYAML([]byte(counterModule))
	require.NoError(t, err)
	assert.Equal(t, "counter", m.Name)

	limit := m.Global("limit")
	require.NotNil(t, limit)
	assert.Equal(t, []byte{10, 0, 0, 0}, limit.Init)
	assert.Equal(t, make([]byte, 4), m.Global("table").Init)

	main := m.Function("main")
	require.NotNil(t, main)
	nondet := m.Function("nondet.int")
	require.NotNil(t, nondet)
	assert.True(t, nondet.IsDeclaration())
	assert.True(t, I32.Equal(nondet.Sig.Ret))

	var names []string
	for _, b := range main.Blocks {
		for _, inst := range b.Insts {
			names = append(names, inst.String())
		}
	}
	want := []string{
		"%n = call @nondet.int",
		"br label %loop",
		"%i = phi i32 [ i32 0, %entry ], [ %next, %loop ]",
		"%next = add %i, i32 1",
		"%c = icmp slt %next, %n",
		"br %c, label %loop, label %exit",
		"ret %next",
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("instructions mismatch (-want +got):\n%s", diff)
	}

	// the forward reference in the phi is resolved to the add
	phi := main.Block("loop").Phis()[0]
	next, ok := phi.IncomingFor(main.Block("loop"))
	require.True(t, ok)
	assert.Same(t, main.Block("loop").Insts[1], next)
}

func TestLoadYAMLShadowAndSummaries(t *testing.T) {
	t.Parallel()

	src := `
module: shadow
globals:
  - {name: g, type: i32}
functions:
  - name: callee
    ret: i32
    params: [{name: x, type: i32}]
    blocks:
      - name: entry
        insts:
          - {op: call, name: m0, callee: "@shadow.mem.arg.ref", type: i32, args: ["i32 1", "i32 0"], shadow: {region: 1}}
          - {op: ret, args: ["%x"]}
  - name: main
    ret: i32
    blocks:
      - name: entry
        insts:
          - {op: call, name: sm, callee: "@shadow.mem.init", type: i32, args: ["i32 1"], shadow: {region: 1, scalar: "@g", bits: 32}}
          - {op: ptrtoint, name: a, type: i32, args: ["@g"]}
          - {op: ret, args: [{op: zext, type: i32, args: ["i8 3"]}]}
summaries:
  - {function: callee, args: [x], globals: ["@g"], ret: "%x"}
`
	m, err := LoadYAML([]byte(src))
	require.NoError(t, err)

	sm := m.Function("main").Entry().Insts[0]
	meta, ok := ShadowOf(sm)
	require.True(t, ok)
	assert.Equal(t, 1, meta.Region)
	assert.Same(t, m.Global("g"), meta.Scalar)
	assert.Equal(t, 32, meta.ScalarBits)
	assert.True(t, IsShadowMemCall(sm))

	ret := m.Function("main").Entry().Terminator().(*Ret)
	ce, ok := ret.Val().(*ConstExpr)
	require.True(t, ok)
	assert.Equal(t, ZExt, ce.Op)

	callee := m.Function("callee")
	fi := m.SummaryOf(callee)
	require.NotNil(t, fi)
	assert.Equal(t, []*Param{callee.Params[0]}, fi.Args)
	assert.Equal(t, 6, fi.Arity())
}

func TestLoadYAMLErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		line int
	}{
		{
			name: "unknown instruction",
			src: `
functions:
  - name: main
    blocks:
      - name: entry
        insts:
          - {op: frobnicate}
`,
			line: 7,
		},
		{
			name: "undefined forward reference",
			src: `
functions:
  - name: main
    ret: i32
    blocks:
      - name: entry
        insts:
          - {op: ret, args: ["%missing"]}
`,
			line: 8,
		},
		{
			name: "unknown block",
			src: `
functions:
  - name: main
    blocks:
      - name: entry
        insts:
          - {op: br, targets: [nowhere]}
`,
			line: 7,
		},
		{
			name: "bad type",
			src: `
globals:
  - {name: g, type: "i32 x"}
`,
			line: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadYAML([]byte(tt.src))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed))
			assert.Contains(t, err.Error(), fmt.Sprintf("line %d:", tt.line))
		})
	}
}
