// Package template renders message subjects and bodies with Liquid.
//
// A service either has no template, in which case DefaultTemplate passes
// subject and body through, or a stored Template. Stored templates may
// extend a parent: the chain is loaded root first and flattened before
// parsing, with each child's {% block name %} regions replacing the
// parent's. A child without any blocks fills its parent's "content" block.
// Nested blocks are not supported.
package template
