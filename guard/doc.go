// Package guard runs an operation while holding a distributed lock described
// by a Declaration.
//
// A Declaration names the lock model, one or more key expressions and a key
// class. Key expressions are literals or reference the arguments of the
// guarded call with a leading '#', for example "#orderId" or "#user.ID".
// Each expression resolves to one or more lock identifiers of the form
// "<keyClass>@<value>"; collection values yield one identifier per element.
//
// The model decides how identifiers become a lock handle:
//
//	ModelAuto       ModelQuorum for several expressions, ModelReentrant otherwise
//	ModelReentrant  a mutex; a red lock when the expression yields several identifiers
//	ModelFair       a fair mutex on the first identifier
//	ModelRead       the read side of a read/write lock on the first identifier
//	ModelWrite      the write side of a read/write lock on the first identifier
//	ModelMultiple   a multi lock over every identifier
//	ModelQuorum     a red lock over every identifier
//
// Guard.Do acquires the handle, runs the operation only when the lock is
// held and releases the handle on every exit path once it was acquired.
package guard
