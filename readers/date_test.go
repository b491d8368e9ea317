package readers

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_ParseDate(t *testing.T) {
	var cases = []struct {
		input  string
		ok     bool
		output time.Time
	}{
		{input: "D:20250309111411+00'00'", ok: true, output: time.Date(2025, 3, 9, 11, 14, 11, 0, time.UTC)},
		{input: "D:20250309111411-05'00'", ok: true, output: time.Date(2025, 3, 9, 16, 14, 11, 0, time.UTC)},
		{input: "D:20250309111411+0530", ok: true, output: time.Date(2025, 3, 9, 5, 44, 11, 0, time.UTC)},
		{input: "D:20250309111411Z", ok: true, output: time.Date(2025, 3, 9, 11, 14, 11, 0, time.UTC)},
		{input: "D:20250309111411", ok: true, output: time.Date(2025, 3, 9, 11, 14, 11, 0, time.UTC)},
		{input: "D:20250309", ok: true, output: time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)},
		{input: "20250309111411+00'00'", ok: true, output: time.Date(2025, 3, 9, 11, 14, 11, 0, time.UTC)},
		{input: "20250309", ok: true, output: time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)},
		{input: "D:2025", ok: true, output: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{input: "", ok: false},
		{input: "D:2025030", ok: false},
		{input: "D:20251309", ok: false},
		{input: "D:20250231", ok: false},
		{input: "D:20250309111411X", ok: false},
		{input: "yesterday", ok: false},
	}

	for i, c := range cases {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			out, ok := ParseDate(c.input)
			assert.Equal(t, c.ok, ok)
			if c.ok {
				assert.True(t, c.output.Equal(out), "expected %s, got %s", c.output, out)
			}
		})
	}
}
