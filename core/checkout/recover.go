package checkout

// returnSources are the three places the redirect-return handler can recover
// its identifiers from, in precedence order: the values carried by the return
// request itself (body or provider-appended query string), the durable
// checkout session, then the URL path segment. Any subset may be absent.
type returnSources struct {
	RequestOrderID string
	RequestItemID  string
	Session        Session
	PathItemID     string
}

// recoverIdentifiers resolves the provider order id and the item id from the
// available sources. Either result may come out empty; the caller treats a
// missing identifier as a terminal precondition failure.
func recoverIdentifiers(src returnSources) (orderID, itemID string) {
	orderID = src.RequestOrderID
	if orderID == "" {
		orderID = src.Session.ProviderOrderID
	}

	itemID = src.RequestItemID
	if itemID == "" {
		itemID = src.Session.ItemID
	}
	if itemID == "" {
		itemID = src.PathItemID
	}

	return orderID, itemID
}
