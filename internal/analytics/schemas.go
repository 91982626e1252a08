package analytics

import _ "embed"

// Structured output schemas passed to the model with each task

//go:embed schemas/summary.json
var summarySchema string

//go:embed schemas/topics.json
var topicsSchema string

//go:embed schemas/trends.json
var trendsSchema string
