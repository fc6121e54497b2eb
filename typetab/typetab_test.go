package typetab

import (
	"fmt"
	"testing"
)

type mapPrinter map[uint64]string

func (p mapPrinter) TypeName(key uint64) string {
	return p[key]
}

type panicPrinter struct{}

func (panicPrinter) TypeName(uint64) string {
	panic("inconsistent runtime state")
}

func TestRegisterIdempotent(t *testing.T) {
	table := NewTable(mapPrinter{0x2000: "Vector{Int}"}, Tags{})

	first := table.Register(0x2000)
	second := table.Register(0x2000)

	if first != second {
		t.Fatalf("Register minted two ids for one key: %d and %d", first, second)
	}
	if table.Len() != 1 {
		t.Fatalf("name table has %d entries, want 1", table.Len())
	}
	if name := table.Name(first); name != "Vector{Int}" {
		t.Fatalf("Name() = %q", name)
	}
}

func TestSentinelNames(t *testing.T) {
	tags := Tags{
		Buffer: 0x8000,
		Malloc: 0x8010,
		String: 0x8020,
		Symbol: 0x8030,
	}
	table := NewTable(nil, tags)

	tests := []struct {
		name string
		key  uint64
		want string
	}{
		{"corrupt low pointer", 7, NameCorrupt},
		{"zero key", 0, NameCorrupt},
		{"buffer tag", 0x8000, NameBuffer},
		{"malloc tag", 0x8010, NameMalloc},
		{"string type", 0x8020, NameString},
		{"symbol type", 0x8030, NameSymbol},
		{"no printer", 0x9999, NameMissing},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			id := table.Register(test.key)
			if got := table.Name(id); got != test.want {
				t.Fatalf("Name() = %q, want %q", got, test.want)
			}
		})
	}
}

func TestPrinterFailureDegrades(t *testing.T) {
	t.Run("panicking printer", func(t *testing.T) {
		table := NewTable(panicPrinter{}, Tags{})
		id := table.Register(0x5000)
		if got := table.Name(id); got != NameMissing {
			t.Fatalf("Name() = %q, want %q", got, NameMissing)
		}
	})

	t.Run("empty result", func(t *testing.T) {
		table := NewTable(mapPrinter{}, Tags{})
		id := table.Register(0x5000)
		if got := table.Name(id); got != NameMissing {
			t.Fatalf("Name() = %q, want %q", got, NameMissing)
		}
	})
}

func TestInternDefersNaming(t *testing.T) {
	table := NewTable(mapPrinter{0x5000: "Dict{Symbol,Any}"}, Tags{})

	id := table.Intern(0x5000)
	if got := table.Name(id); got != NameMissing {
		t.Fatalf("Name() = %q before Register, want %q", got, NameMissing)
	}

	// Register must reuse the interned id and fill in the printed name.
	if again := table.Register(0x5000); again != id {
		t.Fatalf("Register minted a second id: %d and %d", id, again)
	}
	if got := table.Name(id); got != "Dict{Symbol,Any}" {
		t.Fatalf("Name() = %q after Register", got)
	}
	if table.Len() != 1 {
		t.Fatalf("name table has %d entries, want 1", table.Len())
	}
}

func TestInternNeverConsultsPrinter(t *testing.T) {
	table := NewTable(panicPrinter{}, Tags{Buffer: 0x8000})

	// Sentinel keys resolve from the key alone and are final immediately.
	if got := table.Name(table.Intern(0x8000)); got != NameBuffer {
		t.Fatalf("Name() = %q, want %q", got, NameBuffer)
	}
	if got := table.Name(table.Intern(7)); got != NameCorrupt {
		t.Fatalf("Name() = %q, want %q", got, NameCorrupt)
	}
	if got := table.Name(table.Intern(0x9000)); got != NameMissing {
		t.Fatalf("Name() = %q, want %q", got, NameMissing)
	}
}

func TestNamesSnapshot(t *testing.T) {
	printer := mapPrinter{}
	table := NewTable(printer, Tags{})
	for i := 0; i < 5; i++ {
		key := uint64(0x4000 + i*16)
		printer[key] = fmt.Sprintf("T%d", i)
		table.Register(key)
	}

	names := table.Names()
	if len(names) != 5 {
		t.Fatalf("snapshot has %d names, want 5", len(names))
	}
	names[0] = "mutated"
	if table.Name(0) == "mutated" {
		t.Fatal("Names() must return a copy")
	}
}

func TestReset(t *testing.T) {
	table := NewTable(mapPrinter{0x2000: "T"}, Tags{})
	table.Register(0x2000)
	table.Reset()
	if table.Len() != 0 {
		t.Fatalf("table has %d entries after reset", table.Len())
	}
}
