package wa

import "strings"

// BarePhone extracts the phone number from a WhatsApp JID.
//
// Inbound JIDs look like "5511999887766@s.whatsapp.net"; multi-device
// sessions add a device suffix, "5511999887766:12@s.whatsapp.net". The
// routing tables key on the bare number, so both the server part and the
// device suffix are dropped. A string without "@" is returned as-is.
func BarePhone(jid string) string {
	phone := jid
	if at := strings.Index(phone, "@"); at >= 0 {
		phone = phone[:at]
	}
	if colon := strings.Index(phone, ":"); colon >= 0 {
		phone = phone[:colon]
	}
	return phone
}
