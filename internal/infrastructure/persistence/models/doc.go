// Package models contains the GORM persistence models of the document engine.
// Domain types stay free of ORM tags; each model converts to and from its
// domain counterpart with ToDomain / FromDomain.
//
// Tables:
//   - documents, document_items: budgets, orders and visits with their lines
//   - document_sequences: one counter row per (company, branch, kind)
//   - product_packaging, price_entries: read-only catalog data used by the
//     packaging calculator
package models
