package content

import _ "embed"

// Structured output schemas passed to the model with each task

//go:embed schemas/blog.json
var blogSchema string

//go:embed schemas/newsletter.json
var newsletterSchema string

//go:embed schemas/variations.json
var variationsSchema string

//go:embed schemas/improvements.json
var improvementsSchema string
