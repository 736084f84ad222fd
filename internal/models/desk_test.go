package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeskIsKiosk(t *testing.T) {
	tests := []struct {
		name     string
		desk     Desk
		expected bool
	}{
		{
			name:     "plain desk",
			desk:     Desk{Identifier: "cell-r01c01", Label: "Desk 1"},
			expected: false,
		},
		{
			name:     "kiosk in label",
			desk:     Desk{Identifier: "cell-r01c01", Label: "Check-in Kiosk"},
			expected: true,
		},
		{
			name:     "kiosk in notes",
			desk:     Desk{Identifier: "cell-r01c01", Label: "Desk 1", Notes: "shared KIOSK terminal"},
			expected: true,
		},
		{
			name:     "kiosk in identifier",
			desk:     Desk{Identifier: "kiosk-north", Label: "North"},
			expected: true,
		},
		{
			name:     "mixed case match",
			desk:     Desk{Identifier: "cell-r01c01", Label: "KiOsK"},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.desk.IsKiosk())
		})
	}
}

func TestDepartmentAssignable(t *testing.T) {
	require.True(t, (&Department{Name: "Engineering"}).Assignable())
	require.False(t, (&Department{Name: DepartmentUtility}).Assignable())
	require.False(t, (&Department{Name: DepartmentWalkway}).Assignable())
}
