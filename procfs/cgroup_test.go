package procfs

import "testing"

func TestExtractContainerID(t *testing.T) {
	longID := "abc123abc123abc123abc123abc123abc123abc123abc123abc123abc123ab" // 64 hex chars
	tests := []struct {
		name string
		line string
		want string
		ok   bool
	}{
		{
			name: "docker cgroup v1",
			line: "4:memory:/docker/" + longID,
			want: "abc123abc123",
			ok:   true,
		},
		{
			name: "systemd scope suffix",
			line: "0::/system.slice/docker-" + longID + ".scope",
			want: "abc123abc123",
			ok:   true,
		},
		{
			name: "conmon container excluded",
			line: "0::/machine.slice/libpod-conmon-" + longID + ".scope",
			want: "",
			ok:   false,
		},
		{
			name: "not a container",
			line: "1:name=systemd:/init.scope",
			want: "",
			ok:   false,
		},
		{
			name: "too short",
			line: "4:memory:/docker/abc",
			want: "",
			ok:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractContainerID(tt.line)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
