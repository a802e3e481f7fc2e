// Package hcl loads pipeline definitions from HCL files into the agnostic
// model. Input expressions of the form step.<id>.<output> become data
// references; every other expression must evaluate to a constant and becomes
// a literal binding.
package hcl
