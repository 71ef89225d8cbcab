package grammar

// Features toggles version-dependent syntax in the lexer and parser.
type Features struct {
	CharStrings     bool // ?a is a one-character string, not an integer
	Lambda          bool // ->(x) { }
	Labels          bool // {a: 1}, f(a: 1)
	KeywordParams   bool // def f(a: 1), **opts
	SymbolArrays    bool // %i[a b]
	RequiredKwargs  bool // def f(a:)
	NumericSuffixes bool // 3r, 2i
	QuotedLabels    bool // {"a": 1}
	SafeNavigation  bool // a&.b
	SquigglyHeredoc bool // <<~EOS
	BlockRescue     bool // rescue inside do ... end
	EndlessRange    bool // (1..)
	BeginlessRange  bool // (..1)
	ArgForwarding   bool // def f(...)
	PatternMatching bool // case x in ...
	NumberedParams  bool // _1 inside blocks
}

var featureTable = map[Version]Features{
	18: {},
	19: {CharStrings: true, Lambda: true, Labels: true},
	20: {CharStrings: true, Lambda: true, Labels: true, KeywordParams: true, SymbolArrays: true},
	21: {
		CharStrings: true, Lambda: true, Labels: true, KeywordParams: true, SymbolArrays: true,
		RequiredKwargs: true, NumericSuffixes: true,
	},
	22: {
		CharStrings: true, Lambda: true, Labels: true, KeywordParams: true, SymbolArrays: true,
		RequiredKwargs: true, NumericSuffixes: true, QuotedLabels: true,
	},
	23: {
		CharStrings: true, Lambda: true, Labels: true, KeywordParams: true, SymbolArrays: true,
		RequiredKwargs: true, NumericSuffixes: true, QuotedLabels: true, SafeNavigation: true,
		SquigglyHeredoc: true,
	},
	24: {
		CharStrings: true, Lambda: true, Labels: true, KeywordParams: true, SymbolArrays: true,
		RequiredKwargs: true, NumericSuffixes: true, QuotedLabels: true, SafeNavigation: true,
		SquigglyHeredoc: true,
	},
	25: {
		CharStrings: true, Lambda: true, Labels: true, KeywordParams: true, SymbolArrays: true,
		RequiredKwargs: true, NumericSuffixes: true, QuotedLabels: true, SafeNavigation: true,
		SquigglyHeredoc: true,
		BlockRescue: true,
	},
	26: {
		CharStrings: true, Lambda: true, Labels: true, KeywordParams: true, SymbolArrays: true,
		RequiredKwargs: true, NumericSuffixes: true, QuotedLabels: true, SafeNavigation: true,
		SquigglyHeredoc: true,
		BlockRescue: true, EndlessRange: true,
	},
	27: {
		CharStrings: true, Lambda: true, Labels: true, KeywordParams: true, SymbolArrays: true,
		RequiredKwargs: true, NumericSuffixes: true, QuotedLabels: true, SafeNavigation: true,
		SquigglyHeredoc: true,
		BlockRescue: true, EndlessRange: true,
		BeginlessRange: true, ArgForwarding: true, PatternMatching: true, NumberedParams: true,
	},
}

// FeaturesFor returns the feature set of v. Unsupported versions get the newest known set.
func FeaturesFor(v Version) Features {
	if f, ok := featureTable[v]; ok {
		return f
	}
	return featureTable[MaxSupported]
}
