// Package settings implements the hierarchical merge of typed step and
// pipeline configuration. Settings are keyed by "category.flavor" and merged
// field by field, with step-level values taking precedence.
package settings
