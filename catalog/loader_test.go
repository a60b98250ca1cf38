package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spring-projects/spring-data-release-sub001/train"
)

const sampleCatalog = `
trains:
  - name: Turing
    scheme: calendar
    version: 2025.1.0
    status: oss
    plan: [M1, RC1, GA, SR1, SR2]
    members:
      - component: bom
        base: 2025.1.0
        dependencies: [commons, relational]
      - component: commons
        base: 3.5.0
        artifacts:
          - "org/example/data/commons-core/{version}/*"
          - "org/example/data/commons-parent/{version}/*"
      - component: relational
        base: 3.5.0
        dependencies: [commons]
  - name: Moore
    scheme: classic
    status: commercial
    members:
      - component: bom
        base: 2.2.0
      - component: commons
        base: 2.2.0
`

// TestLoad verifies a complete catalog round-trips into the model.
func TestLoad(t *testing.T) {
	c, err := Load(strings.NewReader(sampleCatalog))
	require.NoError(t, err)
	require.Len(t, c.Trains(), 2)

	turing, err := c.Train("Turing")
	require.NoError(t, err)
	assert.Equal(t, train.SchemeCalendar, turing.Scheme)
	assert.Equal(t, "2025.1.0", turing.Version)
	assert.Equal(t, train.StatusOpenSource, turing.Status)
	assert.Equal(t, []train.Milestone{train.M(1), train.RC(1), train.GA, train.SR(1), train.SR(2)}, turing.Plan)

	commons, ok := turing.Member("commons")
	require.True(t, ok)
	assert.Equal(t, train.Triple{Major: 3, Minor: 5}, commons.Base)
	assert.Len(t, commons.ArtifactPatterns, 2)

	// Calendar trains are addressable by their version too.
	byVersion, err := c.Train("2025.1.0")
	require.NoError(t, err)
	assert.Same(t, turing, byVersion)

	moore, err := c.Train("Moore")
	require.NoError(t, err)
	assert.Equal(t, train.StatusCommercial, moore.Status)
	assert.Empty(t, moore.Plan, "plan is optional and defaults at resolution time")
}

// TestLoadRejectsInvalidCatalogs covers structural validation.
func TestLoadRejectsInvalidCatalogs(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing BOM member",
			yaml: `
trains:
  - name: Hopper
    scheme: classic
    status: oss
    members:
      - component: commons
        base: 1.0.0
`,
		},
		{
			name: "malformed base version",
			yaml: `
trains:
  - name: Hopper
    scheme: classic
    status: oss
    members:
      - component: bom
        base: one.two.three
`,
		},
		{
			name: "unknown milestone in plan",
			yaml: `
trains:
  - name: Hopper
    scheme: classic
    status: oss
    plan: [M1, BETA2]
    members:
      - component: bom
        base: 1.0.0
`,
		},
		{
			name: "duplicate train name",
			yaml: `
trains:
  - name: Hopper
    scheme: classic
    status: oss
    members:
      - component: bom
        base: 1.0.0
  - name: Hopper
    scheme: classic
    status: oss
    members:
      - component: bom
        base: 2.0.0
`,
		},
		{
			name: "unknown field",
			yaml: `
trains:
  - name: Hopper
    scheme: classic
    status: oss
    flavour: vanilla
    members:
      - component: bom
        base: 1.0.0
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.yaml))
			require.Error(t, err)
		})
	}
}

// TestTrainLookupUnknown verifies the lookup error.
func TestTrainLookupUnknown(t *testing.T) {
	c, err := Load(strings.NewReader(sampleCatalog))
	require.NoError(t, err)

	_, err = c.Train("Lovelace")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownTrain)
}
