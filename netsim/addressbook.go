package netsim

// AddressBook maps a BucketID to the ordered sequence of addresses an
// agent has published or is known to hold. Order of appearance is
// preserved so reconciliation stays deterministic.
type AddressBook map[BucketID][]EntryAddress

// Bookkeep appends address to book[bucket], creating the sequence if
// absent. Duplicates are not removed: a caller that wants "publish once"
// semantics must check membership first, as the reconciliation handlers
// in Server do.
func Bookkeep(book AddressBook, bucket BucketID, address EntryAddress) {
	book[bucket] = append(book[bucket], address)
}

// Unbookkeep removes the first occurrence of address from book[bucket]
// and reports whether it was present.
func Unbookkeep(book AddressBook, bucket BucketID, address EntryAddress) bool {
	addrs, ok := book[bucket]
	if !ok {
		return false
	}
	for i, a := range addrs {
		if a == address {
			book[bucket] = append(addrs[:i], addrs[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether address is already recorded for bucket.
func (b AddressBook) Contains(bucket BucketID, address EntryAddress) bool {
	for _, a := range b[bucket] {
		if a == address {
			return true
		}
	}
	return false
}
