package cli

import (
	"bytes"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xctools/xctools/history"
	"github.com/xctools/xctools/model"
)

func TestRemoveFirstDashDash(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "empty slice",
			in:   []string{},
			want: []string{},
		},
		{
			name: "starts with --",
			in:   []string{"--", "-http=:8080", "-top"},
			want: []string{"-http=:8080", "-top"},
		},
		{
			name: "no --",
			in:   []string{"-http=:8080", "-top"},
			want: []string{"-http=:8080", "-top"},
		},
		{
			name: "only --",
			in:   []string{"--"},
			want: []string{},
		},
		{
			name: "-- in middle",
			in:   []string{"-top", "--", "-http=:8080"},
			want: []string{"-top", "--", "-http=:8080"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := removeFirstDashDash(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("removeFirstDashDash() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseViewArgs(t *testing.T) {
	tests := []struct {
		name          string
		in            []string
		wantID        string
		wantPprofArgs []string
	}{
		{
			name:          "empty args - default to 0",
			in:            []string{},
			wantID:        "0",
			wantPprofArgs: nil,
		},
		{
			name:          "only ID - index 0",
			in:            []string{"0"},
			wantID:        "0",
			wantPprofArgs: []string{},
		},
		{
			name:          "only ID - negative index",
			in:            []string{"-1"},
			wantID:        "-1",
			wantPprofArgs: []string{},
		},
		{
			name:          "only name prefix",
			in:            []string{"Smoke"},
			wantID:        "Smoke",
			wantPprofArgs: []string{},
		},
		{
			name:          "only pprof args",
			in:            []string{"-http=:8080"},
			wantID:        "0",
			wantPprofArgs: []string{"-http=:8080"},
		},
		{
			name:          "ID with pprof args",
			in:            []string{"0", "-http=:8080"},
			wantID:        "0",
			wantPprofArgs: []string{"-http=:8080"},
		},
		{
			name:          "ID with -- separator and pprof args",
			in:            []string{"0", "--", "-http=:8080", "-top"},
			wantID:        "0",
			wantPprofArgs: []string{"-http=:8080", "-top"},
		},
		{
			name:          "negative index with -- and pprof args",
			in:            []string{"-1", "--", "-top"},
			wantID:        "-1",
			wantPprofArgs: []string{"-top"},
		},
		{
			name:          "name with pprof args no separator",
			in:            []string{"Smoke", "-list=Login"},
			wantID:        "Smoke",
			wantPprofArgs: []string{"-list=Login"},
		},
		{
			name:          "only -- uses default 0",
			in:            []string{"--", "-http=:8080"},
			wantID:        "0",
			wantPprofArgs: []string{"-http=:8080"},
		},
		{
			name:          "negative index with multiple pprof args",
			in:            []string{"-2", "-http=:8080", "-nodefraction=0.1"},
			wantID:        "-2",
			wantPprofArgs: []string{"-http=:8080", "-nodefraction=0.1"},
		},
		{
			name:          "ID 0 with -- and multiple pprof args",
			in:            []string{"0", "--", "-http=:8080", "-top", "-cum"},
			wantID:        "0",
			wantPprofArgs: []string{"-http=:8080", "-top", "-cum"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotID, gotPprofArgs := parseViewArgs(tt.in)
			if gotID != tt.wantID {
				t.Errorf("parseViewArgs() gotID = %v, want %v", gotID, tt.wantID)
			}
			if !reflect.DeepEqual(gotPprofArgs, tt.wantPprofArgs) {
				t.Errorf("parseViewArgs() gotPprofArgs = %v, want %v", gotPprofArgs, tt.wantPprofArgs)
			}
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestPrintSuite(t *testing.T) {
	entry := &history.Entry{
		Path: "TestResults/SmokeTests.json",
		Suite: model.SuiteReport{
			Name:      "SmokeTests",
			StartTime: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
			Duration:  12.5,
			RunDestination: &model.RunDestination{
				TargetDeviceRecord: model.DeviceRecord{
					DisplayName:        "iPhone 15",
					PlatformName:       "iOS Simulator",
					OSVersion:          "17.2 (21C62)",
					TargetArchitecture: model.ArchARM64,
				},
				TargetSDKRecord: model.SDKRecord{Name: "Simulator - iOS 17.2"},
			},
			Tests: []model.TestReport{
				{
					Name:       ptr("testLogin()"),
					Duration:   ptr(3.0),
					Successful: true,
					Steps: []model.StepReport{{
						Name:       "Enter credentials",
						Duration:   ptr(1.25),
						Successful: true,
						Substeps: []model.StepReport{{
							Name:        "Type password",
							Successful:  true,
							Attachments: []model.Attachment{{Filename: ptr("keyboard.png")}, {}},
						}},
					}},
				},
				{
					Steps: []model.StepReport{{Name: "XCTAssertTrue failed"}},
				},
			},
		},
	}

	var buf bytes.Buffer
	printSuite(&buf, entry)
	out := buf.String()

	require.Contains(t, out, "=== Suite: SmokeTests ===\n")
	require.Contains(t, out, "Duration: 12.5s\n")
	require.Contains(t, out, "Result: ✗ 1/2 tests failed\n")
	require.Contains(t, out, "Device: iPhone 15, iOS Simulator 17.2 (21C62) (arm64)\n")
	require.Contains(t, out, "Report: TestResults/SmokeTests.json\n")
	require.Contains(t, out, "✓ testLogin() [3s]\n"+
		"    ✓ Enter credentials [1.25s]\n"+
		"        ✓ Type password (2 attachments: keyboard.png)\n"+
		"✗ <unnamed test>\n"+
		"    ✗ XCTAssertTrue failed\n")
}
