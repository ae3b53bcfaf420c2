package workflow

// CodeReview returns the bundled code-review workflow: extract functions,
// measure complexity, detect issues, suggest improvements, then score
// quality in a loop until the score reaches 70 or three scoring passes have
// run, whichever comes first.
func CodeReview() Definition {
	return Definition{
		Name: "code_review",
		Nodes: []Node{
			{Name: "extract", Kind: KindSimple, ToolName: "extract_functions"},
			{Name: "complexity", Kind: KindSimple, ToolName: "check_complexity"},
			{Name: "issues", Kind: KindSimple, ToolName: "detect_issues"},
			{Name: "suggestions", Kind: KindSimple, ToolName: "suggest_improvements"},
			{
				Name:          "quality_check",
				Kind:          KindLoop,
				ToolName:      "calculate_quality_score",
				Condition:     "quality_score >= 70",
				MaxIterations: 3,
			},
			{Name: "end", Kind: KindSimple},
		},
		Edges: []Edge{
			{From: "extract", To: "complexity"},
			{From: "complexity", To: "issues"},
			{From: "issues", To: "suggestions"},
			{From: "suggestions", To: "quality_check"},
			{From: "quality_check", To: "issues", Label: LabelContinue},
			{From: "quality_check", To: "end", Label: LabelExit},
		},
		StartNode: "extract",
		EndNodes:  []string{"end"},
	}
}

// CodeReviewSampleState is an initial state suited to the CodeReview
// workflow, used by the example endpoint and CLI docs.
func CodeReviewSampleState() map[string]any {
	return map[string]any{
		"code": `def calculate_total(items):
    total = 0
    for item in items:
        if item['price'] > 0:
            if item['quantity'] > 0:
                total += item['price'] * item['quantity']
    return total

def process_order(order):
    if order:
        if order['status'] == 'pending':
            if order['payment_method']:
                print('Processing order')
`,
	}
}
