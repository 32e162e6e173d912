// Package core contains the BCA client domain contracts, entities, and the
// signed request pipeline. Lower-level adapters (auth, transport, storage)
// depend on this package; core must not depend on them.
package core
