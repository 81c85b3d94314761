package security

import "testing"

func TestValidateOwner(t *testing.T) {
	tests := []struct {
		owner   string
		wantErr bool
	}{
		{"acme", false},
		{"pchambless", false},
		{"my-org-2", false},
		{"", true},
		{"-leading", true},
		{"double--hyphen", true},
		{"has/slash", true},
		{"a234567890123456789012345678901234567890", true},
	}

	for _, tt := range tests {
		t.Run(tt.owner, func(t *testing.T) {
			err := ValidateOwner(tt.owner)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateOwner(%q) error = %v, wantErr %v", tt.owner, err, tt.wantErr)
			}
		})
	}
}

func TestValidateRepoName(t *testing.T) {
	tests := []struct {
		repo    string
		wantErr bool
	}{
		{"widgets", false},
		{"my.repo_name-2", false},
		{"", true},
		{".", true},
		{"..", true},
		{"../etc", true},
		{"a/b", true},
		{`a\b`, true},
	}

	for _, tt := range tests {
		t.Run(tt.repo, func(t *testing.T) {
			err := ValidateRepoName(tt.repo)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRepoName(%q) error = %v, wantErr %v", tt.repo, err, tt.wantErr)
			}
		})
	}
}

func TestValidateDestination(t *testing.T) {
	tests := []struct {
		dest    string
		wantErr bool
	}{
		{"docs/requirements", false},
		{"requirements", false},
		{"docs/../requirements", false},
		{"", true},
		{"   ", true},
		{"/etc", true},
		{"../outside", true},
		{"docs/../../outside", true},
	}

	for _, tt := range tests {
		t.Run(tt.dest, func(t *testing.T) {
			err := ValidateDestination(tt.dest)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDestination(%q) error = %v, wantErr %v", tt.dest, err, tt.wantErr)
			}
		})
	}
}
