package listing

// Listing is the immutable record for one property posting discovered in
// a notification email. Every field is optional: the notification markup
// is not a stable contract, and a listing with missing fields is still
// forwarded downstream. A nil field means the source element was absent.
type Listing struct {
	// URL is the link to the listing's detail page.
	URL *string

	// ImageURL is the address of the listing's hero photo.
	ImageURL *string

	// Price is the advertised price text, e.g. "$2,495/mo".
	Price *string

	// Facts is the bed/bath/area summary line.
	Facts *string

	// Address is the street address, with zero-width non-joiner
	// characters the sender embeds for display purposes removed.
	Address *string
}
