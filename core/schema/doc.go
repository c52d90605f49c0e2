// Package schema assembles the immutable schema descriptor of the predefine
// document model.
//
// The descriptor is computed once from configuration at process start:
//
//	b := schema.NewBuilder(cfg)
//	desc, err := b.Build()
//
// It carries the localized field names, the relation definitions, the unique
// index, the namespace/bucket dictionary and a fingerprint of all of the
// above. Consumers (the store, the service and the HTTP layer) receive the
// same *Descriptor and only read from it.
//
// # Relations
//
// Every configured namespace produces an implicit relation named after the
// lower-cased singular namespace ("Currency" -> "currency") that points back
// to the predefine model. Explicit relations come from configuration and may
// point at any model. Both kinds are indexed, aggregatable, taggable and
// autopopulated one level deep.
//
// When an explicit relation has the same name as an implicit one the
// explicit definition replaces it. Implicit relations are applied first and
// explicit ones last, and the last writer wins.
//
// # Unique index
//
// Documents are unique on (namespace, bucket, code, name.<locale>...), all
// ascending, with one name field per supported locale in sorted order.
package schema
