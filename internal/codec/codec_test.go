package codec

import (
	"testing"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    map[string]string
		wantErr bool
	}{
		{name: "empty", args: nil, want: nil},
		{name: "single", args: []string{"dict=8MiB"}, want: map[string]string{"dict": "8MiB"}},
		{name: "trims", args: []string{" window = 1MiB "}, want: map[string]string{"window": "1MiB"}},
		{name: "empty value", args: []string{"checksum="}, want: map[string]string{"checksum": ""}},
		{name: "missing equals", args: []string{"dict"}, wantErr: true},
		{name: "missing key", args: []string{"=1"}, wantErr: true},
		{name: "duplicate", args: []string{"a=1", "a=2"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseParams(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseParams() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseParams() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("ParseParams()[%q] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		allowed []string
		wantErr bool
	}{
		{name: "default", opts: DefaultOptions()},
		{name: "level too low", opts: Options{Level: 0}, wantErr: true},
		{name: "level too high", opts: Options{Level: 10}, wantErr: true},
		{name: "allowed param", opts: Options{Level: 5, Params: map[string]string{"dict": "1MiB"}}, allowed: []string{"dict"}},
		{name: "unknown param", opts: Options{Level: 5, Params: map[string]string{"foo": "1"}}, allowed: []string{"dict"}, wantErr: true},
		{name: "no params allowed", opts: Options{Level: 5, Params: map[string]string{"foo": "1"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate(tt.allowed...)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
