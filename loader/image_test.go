package loader_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sarchlab/o3sim/loader"
)

func TestParseHex(t *testing.T) {
	prog, err := loader.ParseHex(`
# boot stub
@1000
0x00000001
00000002  # trailing comment
20000000
`)
	if err != nil {
		t.Fatal(err)
	}
	if prog.EntryPoint != 0x1000 {
		t.Errorf("entry = %#x, want 0x1000", prog.EntryPoint)
	}
	if len(prog.Image) != 12 {
		t.Fatalf("image length = %d, want 12", len(prog.Image))
	}
	if prog.Image[0] != 0x01 || prog.Image[4] != 0x02 || prog.Image[11] != 0x20 {
		t.Errorf("unexpected image bytes % x", prog.Image)
	}
}

func TestParseHexErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"empty", "# nothing here\n"},
		{"bad word", "0xZZZZ\n"},
		{"late origin", "00000001\n@2000\n"},
		{"bad origin", "@nope\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := loader.ParseHex(tc.src); err == nil {
				t.Errorf("ParseHex(%q) succeeded, want error", tc.src)
			}
		})
	}
}

func TestLoadBinary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prog.bin")
	if err := os.WriteFile(path, []byte{1, 0, 0, 0, 2, 0, 0, 0}, 0o644); err != nil {
		t.Fatal(err)
	}

	prog, err := loader.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(prog.Image) != 8 || prog.EntryPoint != 0 {
		t.Errorf("got entry %#x, %d bytes", prog.EntryPoint, len(prog.Image))
	}
}

func TestLoadRejectsUnalignedBinary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prog.bin")
	if err := os.WriteFile(path, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loader.Load(path); err == nil {
		t.Error("Load accepted an unaligned image")
	}
}

func TestLoadHexFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prog.hex")
	if err := os.WriteFile(path, []byte("00000001\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	prog, err := loader.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(prog.Image) != 4 {
		t.Errorf("image length = %d, want 4", len(prog.Image))
	}
}
