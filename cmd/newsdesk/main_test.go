package main

import (
	"reflect"
	"testing"
)

func TestRewriteDirectLookupArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "no args",
			in:   []string{"newsdesk"},
			want: []string{"newsdesk"},
		},
		{
			name: "bare id",
			in:   []string{"newsdesk", "42"},
			want: []string{"newsdesk", "articles", "get", "42"},
		},
		{
			name: "id after value flag",
			in:   []string{"newsdesk", "--db", "./board.sqlite", "42"},
			want: []string{"newsdesk", "--db", "./board.sqlite", "articles", "get", "42"},
		},
		{
			name: "id after equals flag",
			in:   []string{"newsdesk", "--format=text", "42"},
			want: []string{"newsdesk", "--format=text", "articles", "get", "42"},
		},
		{
			name: "id after bool flag",
			in:   []string{"newsdesk", "--pretty", "42"},
			want: []string{"newsdesk", "--pretty", "articles", "get", "42"},
		},
		{
			name: "id after double dash",
			in:   []string{"newsdesk", "--", "42"},
			want: []string{"newsdesk", "--", "articles", "get", "42"},
		},
		{
			name: "subcommand not rewritten",
			in:   []string{"newsdesk", "articles", "get", "42"},
			want: []string{"newsdesk", "articles", "get", "42"},
		},
		{
			name: "zero is not an id",
			in:   []string{"newsdesk", "0"},
			want: []string{"newsdesk", "0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := rewriteDirectLookupArgs(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("rewriteDirectLookupArgs:\n got: %#v\nwant: %#v", got, tt.want)
			}
		})
	}
}
