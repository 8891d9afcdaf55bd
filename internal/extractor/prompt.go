package extractor

import (
	"fmt"
	"strings"

	"github.com/sozercan/siteinsight/internal/allowlist"
)

var promptTemplate = `You translate website analytics questions into Google Analytics 4 report queries.
Call the %s function with the metrics, dimensions, date range and filters the question asks for.
Only use identifiers from the lists below. Never invent metric or dimension names.
If the question does not name a date range, use "last_7_days".
If you cannot call the function, answer with the same arguments as a single JSON object and nothing else.

Metrics:
%s
Dimensions:
%s`

func systemPrompt(reg *allowlist.Registry) string {
	return fmt.Sprintf(promptTemplate, toolName, list(reg.Metrics()), list(reg.Dimensions()))
}

func list(entries []allowlist.Entry) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s: %s\n", e.Name, e.Description)
	}
	return b.String()
}
