package bytesize

import "testing"

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		input string
		want  ByteSize
	}{
		{"1024", 1024},
		{"0", 0},
		{"100B", 100},
		{"1K", 1 * KB},
		{"1KB", 1 * KB},
		{"100MB", 100 * MB},
		{"100GB", 100 * GB},
		{"5TB", 5 * TB},
		{"1Ki", 1 * KiB},
		{"512Mi", 512 * MiB},
		{"512MiB", 512 * MiB},
		{"10MiB", 10 * MiB},
		{"2GiB", 2 * GiB},
		{"5TiB", 5 * TiB},
		{"1.5Gi", ByteSize(1.5 * float64(GiB))},
		{"0.5MB", 500 * KB},
		{" 100 GB ", 100 * GB},
		{"100gb", 100 * GB},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseByteSize(tt.input)
			if err != nil {
				t.Fatalf("ParseByteSize(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseByteSize(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseByteSizeRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "  ", "GB", "ten", "10XB", "-5MB", "1..5Gi", "."} {
		t.Run(input, func(t *testing.T) {
			if _, err := ParseByteSize(input); err == nil {
				t.Errorf("ParseByteSize(%q) succeeded, want error", input)
			}
		})
	}
}

func TestUnmarshalText(t *testing.T) {
	var b ByteSize
	if err := b.UnmarshalText([]byte("10MiB")); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if b != 10*MiB {
		t.Errorf("expected %d, got %d", 10*MiB, b)
	}

	if err := b.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("expected error for bogus input")
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		size ByteSize
		want string
	}{
		{512, "512B"},
		{2 * KiB, "2.00KiB"},
		{10 * MiB, "10.00MiB"},
		{3 * GiB, "3.00GiB"},
		{5 * TiB, "5.00TiB"},
	}
	for _, tt := range tests {
		if got := tt.size.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", uint64(tt.size), got, tt.want)
		}
	}
}
