package domain

// Names of the persisted documents in the shared key-value store.
const (
	DocCart             = "pm_cart"
	DocCartPick         = "pm_cart_pick"
	DocReorder          = "pm_reorder"
	DocCheckoutSnapshot = "pm_checkout_selection"
)
