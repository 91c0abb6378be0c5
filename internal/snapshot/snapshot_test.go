package snapshot

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pinsync/internal/ir"
)

func TestGenerate_ExcludesEditableCheckout(t *testing.T) {
	env := map[string]string{
		"numpy": "1.26.0",
		"mylib": "-e /home/runner/work/mylib",
	}

	s := Generate("3.11", FromEnvironment(env))

	assert.Equal(t, "3.11", s.CellID)
	assert.Equal(t, []string{"numpy==1.26.0"}, s.Lines())
}

func TestGenerate_ExcludesFileDirectReference(t *testing.T) {
	env := map[string]string{
		"numpy": "1.26.0",
		"mylib": "@ file:///home/runner/work/mylib/lib",
	}

	s := Generate("3.11", FromEnvironment(env))
	assert.Equal(t, []string{"numpy==1.26.0"}, s.Lines())
}

func TestGenerate_ExcludesTaggedLocalCheckout(t *testing.T) {
	env := map[string]string{
		"numpy":                  "1.26.0",
		"mylib (editable)@local": "0.0.0",
	}

	s := Generate("3.11", FromEnvironment(env))
	assert.Equal(t, []string{"numpy==1.26.0"}, s.Lines())
}

func TestGenerate_KeepsRemoteDirectReference(t *testing.T) {
	env := map[string]string{
		"numpy":   "1.26.0",
		"widgets": "@ git+https://github.com/acme/widgets@abc123",
	}

	s := Generate("3.11", FromEnvironment(env))
	assert.Equal(t, "numpy==1.26.0\nwidgets @ git+https://github.com/acme/widgets@abc123\n", string(s.Bytes()))
}

func TestParseFreeze_MixedPinsAndDirectReferences(t *testing.T) {
	freeze := `numpy==1.26.0
widgets @ git+https://github.com/acme/widgets@abc123
gadget @ https://files.example.com/gadget-1.0-py3-none-any.whl
-e git+https://github.com/acme/tools@def456#egg=tools
mylib @ file:///home/runner/work/mylib
attrs==23.1.0
`
	reqs, err := ParseFreeze(strings.NewReader(freeze))
	require.NoError(t, err)
	require.Len(t, reqs, 6)
	assert.Equal(t, "git+https://github.com/acme/widgets@abc123", reqs[1].URL)
	assert.False(t, reqs[1].Editable())

	want := []string{
		"attrs==23.1.0",
		"gadget @ https://files.example.com/gadget-1.0-py3-none-any.whl",
		"numpy==1.26.0",
		"widgets @ git+https://github.com/acme/widgets@abc123",
	}
	if diff := cmp.Diff(want, Generate("3.12", reqs).Lines()); diff != "" {
		t.Errorf("Generate() mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerate_NeverContainsEditableEntries(t *testing.T) {
	freeze := `
-e git+https://github.com/acme/widgets@abc123#egg=widgets&subdirectory=lib
--editable /src/tools
widgets @ file:///home/runner/work/widgets/lib
pandas==2.1.4
altair==5.2.0
`
	reqs, err := ParseFreeze(strings.NewReader(freeze))
	require.NoError(t, err)
	require.Len(t, reqs, 5)

	s := Generate("3.12", reqs)
	for _, line := range s.Lines() {
		assert.False(t, editableMarker.MatchString(line), "editable entry leaked: %s", line)
		assert.NotContains(t, line, "widgets")
	}
	assert.Equal(t, []string{"altair==5.2.0", "pandas==2.1.4"}, s.Lines())
}

func TestGenerate_Deterministic(t *testing.T) {
	env := map[string]string{
		"zipp":               "3.17.0",
		"Jinja2":             "3.1.2",
		"typing_extensions":  "4.9.0",
		"attrs":              "23.1.0",
		"importlib-metadata": "7.0.0",
	}

	first := Generate("3.10", FromEnvironment(env)).Bytes()
	for i := 0; i < 20; i++ {
		again := Generate("3.10", FromEnvironment(env)).Bytes()
		require.Equal(t, first, again, "run %d produced different bytes", i)
	}
}

func TestGenerate_SortsByNormalizedName(t *testing.T) {
	reqs := []Requirement{
		{Name: "zipp", Version: "3.17.0", Raw: "zipp==3.17.0"},
		{Name: "typing_extensions", Version: "4.9.0", Raw: "typing_extensions==4.9.0"},
		{Name: "Jinja2", Version: "3.1.2", Raw: "Jinja2==3.1.2"},
		{Name: "typing-inspect", Version: "0.9.0", Raw: "typing-inspect==0.9.0"},
	}

	got := Generate("3.9", reqs).Lines()
	want := []string{
		"Jinja2==3.1.2",
		"typing_extensions==4.9.0",
		"typing-inspect==0.9.0",
		"zipp==3.17.0",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Generate() order mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerate_NFCNormalizesNames(t *testing.T) {
	decomposed := "cafe\u0301"
	composed := "caf\u00e9"

	a := Generate("3.11", []Requirement{{Name: decomposed, Version: "1.0", Raw: decomposed + "==1.0"}})
	b := Generate("3.11", []Requirement{{Name: composed, Version: "1.0", Raw: composed + "==1.0"}})

	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestGenerate_EmptyEnvironment(t *testing.T) {
	s := Generate("3.11", nil)
	assert.Equal(t, ir.Snapshot{CellID: "3.11", Pins: []ir.Pin{}}, s)
	assert.Empty(t, s.Bytes())
}

func TestParseFreeze_IgnoresCommentsAndBlankLines(t *testing.T) {
	freeze := "# generated by pip\n\nnumpy==1.26.0\n   \n## !! Could not determine repository location\nrequests == 2.31.0\n"

	reqs, err := ParseFreeze(strings.NewReader(freeze))
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, "numpy", reqs[0].Name)
	assert.Equal(t, "1.26.0", reqs[0].Version)
	assert.Equal(t, "requests", reqs[1].Name)
	assert.Equal(t, "2.31.0", reqs[1].Version)
}

func TestParseFreeze_EditableNameFromDirectReference(t *testing.T) {
	reqs, err := ParseFreeze(strings.NewReader("widgets @ file:///src/widgets\n"))
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "widgets", reqs[0].Name)
	assert.True(t, reqs[0].Editable())
}

func TestParseFreeze_RejectsUnknownLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int
	}{
		{"no version", "numpy\n", 1},
		{"reference without url", "numpy==1.26.0\nwheel @ \n", 2},
		{"environment marker", "colorama==0.4.6 ; sys_platform == 'win32'\n", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFreeze(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.True(t, IsParseError(err))

			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.line, pe.Line)
		})
	}
}

func TestParseFreeze_EmptyInput(t *testing.T) {
	reqs, err := ParseFreeze(strings.NewReader(""))
	require.NoError(t, err)
	assert.NotNil(t, reqs)
	assert.Empty(t, reqs)
}

func TestNormalizeName(t *testing.T) {
	tests := map[string]string{
		"Jinja2":             "jinja2",
		"typing_extensions":  "typing-extensions",
		"zope.interface":     "zope-interface",
		"Foo__Bar--baz..Qux": "foo-bar-baz-qux",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeName(in), in)
	}
}
