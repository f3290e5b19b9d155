package language_test

import (
	"testing"

	"github.com/jmadden/readme-docs-migration-github/pkg/converter/language"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnryDetector_Overrides(t *testing.T) {
	d := language.NewEnryDetector(map[string]string{
		".foo":  "FooLang",
		"BAR":   "bar",
		"":      "skipped",
		".none": "",
	})

	lang, conf, err := d.Detect([]byte("x"), "a.foo")
	require.NoError(t, err)
	assert.Equal(t, "foolang", lang)
	assert.Equal(t, 1.0, conf)

	lang, _, err = d.Detect([]byte("x"), "b.BAR")
	require.NoError(t, err)
	assert.Equal(t, "bar", lang)
}

func TestEnryDetector_Detect(t *testing.T) {
	d := language.NewEnryDetector(nil)
	testCases := []struct {
		name       string
		content    string
		hint       string
		lang       string
		confidence float64
	}{
		{"empty", "  \n", "", language.Unknown, 0},
		{"file name hint", "package main\n", "main.go", "go", 0.8},
		{"shebang", "#!/bin/bash\necho hi\n", "", "shell", 0.9},
		{"python shebang", "#!/usr/bin/env python3\nprint('x')\n", "", "python", 0.9},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			lang, conf, err := d.Detect([]byte(tc.content), tc.hint)
			require.NoError(t, err)
			assert.Equal(t, tc.lang, lang)
			assert.Equal(t, tc.confidence, conf)
		})
	}
}

func TestEnryDetector_ClassifierConfidence(t *testing.T) {
	d := language.NewEnryDetector(nil)

	_, short, err := d.Detect([]byte("x = 1"), "")
	require.NoError(t, err)
	assert.LessOrEqual(t, short, 0.3)

	long := "def greet(name):\n    return f\"hello {name}\"\n\nprint(greet('x'))\n"
	lang, conf, err := d.Detect([]byte(long), "")
	require.NoError(t, err)
	assert.NotEmpty(t, lang)
	assert.Equal(t, 0.6, conf)
}
