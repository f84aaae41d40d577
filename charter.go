// Package charter manages versioned store policies (return, refund,
// warranty, shipping and friends) for an eyewear storefront.
//
// Every policy type has an ordered history of versions. Versions are created
// as drafts, edited while inactive, and activated one at a time: activating a
// version deactivates every sibling of the same type atomically. Each type's
// config is validated against its contract before it is stored.
//
//	eng, err := charter.NewEngine(
//	    charter.WithStore(memory.New()),
//	)
//	p, err := eng.CreatePolicy(ctx, &charter.CreateInput{
//	    Type:  policy.TypeReturn,
//	    Title: "30-day returns",
//	})
//	_, err = eng.ActivatePolicy(ctx, p.ID)
//	cur, err := eng.CurrentPolicy(ctx, policy.TypeReturn)
package charter
