package urlscan

// brand pairs a display name with the registrable domain it owns. The
// typosquat check compares candidate domains against these.
type brand struct {
	Name   string
	Domain string
}

var knownBrands = []brand{
	{"Google", "google.com"},
	{"Facebook", "facebook.com"},
	{"Amazon", "amazon.com"},
	{"Apple", "apple.com"},
	{"Microsoft", "microsoft.com"},
	{"PayPal", "paypal.com"},
	{"Netflix", "netflix.com"},
	{"Twitter", "twitter.com"},
	{"Instagram", "instagram.com"},
	{"LinkedIn", "linkedin.com"},
	{"GitHub", "github.com"},
	{"Dropbox", "dropbox.com"},
	{"Yahoo", "yahoo.com"},
	{"eBay", "ebay.com"},
	{"Walmart", "walmart.com"},
	{"Target", "target.com"},
	{"Chase", "chase.com"},
	{"BankOfAmerica", "bankofamerica.com"},
	{"WellsFargo", "wellsfargo.com"},
	{"Citibank", "citibank.com"},
	{"USPS", "usps.com"},
	{"FedEx", "fedex.com"},
	{"UPS", "ups.com"},
	{"DHL", "dhl.com"},
	{"Steam", "steampowered.com"},
	{"Discord", "discord.com"},
	{"Twitch", "twitch.tv"},
	{"Reddit", "reddit.com"},
	{"Wikipedia", "wikipedia.org"},
	{"WhatsApp", "whatsapp.com"},
	{"Zoom", "zoom.us"},
	{"Slack", "slack.com"},
	{"Adobe", "adobe.com"},
	{"Spotify", "spotify.com"},
	{"iCloud", "icloud.com"},
	{"Office365", "office365.com"},
	{"Outlook", "outlook.com"},
	{"Hotmail", "hotmail.com"},
	{"Gmail", "gmail.com"},
}

// TLDs with documented high abuse rates. Free or near-free registrations
// dominate the front of the list; heavily abused new gTLDs follow.
var suspiciousTLDs = []string{
	".tk", ".ml", ".ga", ".cf", ".gq",
	".xyz", ".top", ".work", ".click", ".link",
	".club", ".online", ".site", ".website", ".space",
	".pw", ".cc", ".ws", ".buzz", ".fit",
	".rest", ".icu", ".surf", ".monster", ".quest",
	".download", ".review", ".stream", ".racing",
	".win", ".party", ".science", ".cricket",
	".loan", ".trade", ".webcam", ".date",
	".faith", ".accountant", ".bid", ".gdn",
}

var phishingKeywords = []string{
	"login", "signin", "sign-in", "log-in",
	"verify", "verification", "validate",
	"secure", "security", "account",
	"update", "confirm", "suspend",
	"unlock", "restore", "recover",
	"password", "credential", "auth",
	"banking", "payment", "billing",
	"wallet", "invoice", "receipt",
	"urgent", "immediately", "limited",
	"expire", "suspended", "unusual",
	"webscr", "cmd=_", "dispatch",
	".php?", "redirect=", "return=",
}

var freeHostingDomains = []string{
	"000webhostapp.com", "weebly.com", "wixsite.com",
	"blogspot.com", "wordpress.com", "github.io",
	"netlify.app", "vercel.app", "herokuapp.com",
	"firebaseapp.com", "web.app", "pages.dev",
	"glitch.me", "repl.co", "codepen.io",
}

var redirectServices = []string{
	"bit.ly", "tinyurl.com", "t.co", "goo.gl",
	"ow.ly", "is.gd", "buff.ly", "adf.ly",
	"shorte.st", "bc.vc", "j.mp", "su.pr",
	"cutt.ly", "rebrand.ly", "short.io",
}

// homographPair maps a lookalike sequence to the Latin letter it imitates.
// Most entries are Cyrillic confusables; the last three are ASCII tricks
// where a pair of characters reads as a single letter.
type homographPair struct {
	Lookalike string
	Target    byte
}

var homographChars = []homographPair{
	{"0", 'o'}, {"О", 'O'}, {"о", 'o'},
	{"1", 'l'}, {"І", 'I'},
	{"а", 'a'}, {"е", 'e'}, {"і", 'i'},
	{"ѕ", 's'}, {"р", 'p'}, {"с", 'c'},
	{"ԁ", 'd'}, {"һ", 'h'}, {"ј", 'j'},
	{"ҝ", 'k'}, {"ӏ", 'l'}, {"ո", 'n'},
	{"ԛ", 'q'}, {"г", 'r'}, {"ս", 'u'},
	{"ν", 'v'}, {"ѡ", 'w'}, {"х", 'x'},
	{"у", 'y'}, {"ʐ", 'z'},
	{"rn", 'm'},
	{"vv", 'w'},
	{"cl", 'd'},
}
