package rules_test

import (
	"testing"

	"github.com/mentorlint/mentor/pkg/analysis"
	"github.com/mentorlint/mentor/pkg/pyast"
	"github.com/mentorlint/mentor/pkg/rules"
	"github.com/mentorlint/mentor/pkg/rules/mocks"
)

func TestRegistryRun_DispatchesEachRuleOnce(t *testing.T) {
	f := &analysis.File{Path: "fake.py"}

	late := mocks.NewMockRule(t)
	early := mocks.NewMockRule(t)

	late.EXPECT().ID().Return("zz-mock")
	early.EXPECT().ID().Return("aa-mock")

	// Findings come back unsorted from the rules; Run must order them by
	// position across the whole registry.
	late.EXPECT().Check(f).Return([]rules.Finding{
		{Rule: "zz-mock", Path: "fake.py", Span: pyast.Span{StartLine: 5}},
	}).Once()
	early.EXPECT().Check(f).Return([]rules.Finding{
		{Rule: "aa-mock", Path: "fake.py", Span: pyast.Span{StartLine: 9}},
		{Rule: "aa-mock", Path: "fake.py", Span: pyast.Span{StartLine: 2}},
	}).Once()

	reg := rules.NewRegistry(late, early)
	findings := reg.Run(f)

	if len(findings) != 3 {
		t.Fatalf("Run() returned %d findings, want 3", len(findings))
	}
	wantLines := []uint32{2, 5, 9}
	for i, want := range wantLines {
		if got := findings[i].Span.StartLine; got != want {
			t.Errorf("findings[%d].Span.StartLine = %d, want %d", i, got, want)
		}
	}
}

func TestRegistrySelect_SkipsUnselectedRules(t *testing.T) {
	f := &analysis.File{Path: "fake.py"}

	wanted := mocks.NewMockRule(t)
	ignored := mocks.NewMockRule(t)

	wanted.EXPECT().ID().Return("wanted-rule")
	ignored.EXPECT().ID().Return("ignored-rule")

	// No Check expectation on ignored: the sub-registry calling it would
	// fail the test as an unexpected invocation.
	wanted.EXPECT().Check(f).Return(nil).Once()

	reg := rules.NewRegistry(wanted, ignored)
	sub, err := reg.Select([]string{"wanted-rule"})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}

	if findings := sub.Run(f); len(findings) != 0 {
		t.Errorf("Run() returned %d findings, want 0", len(findings))
	}
}
