package documents

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

type xmlOrders struct {
	XMLName xml.Name   `xml:"orders"`
	Orders  []xmlOrder `xml:"order"`
}

type xmlOrder struct {
	Signal string    `xml:"signal,attr"`
	Plant  string    `xml:"plant,attr"`
	Header xmlHeader `xml:"header"`
	Lines  xmlLines  `xml:"lines"`
}

type xmlHeader struct {
	OrderCustomer    xmlOrderCustomer    `xml:"order-customer"`
	InvoiceCustomer  xmlCustomer         `xml:"invoice-customer"`
	DeliveryCustomer xmlDeliveryCustomer `xml:"delivery-customer"`
	RequestOptions   xmlRequestOptions   `xml:"request-options"`
}

type xmlOrderCustomer struct {
	Code    string `xml:"code,attr"`
	Address string `xml:"address,attr"`
	PO      string `xml:"po"`
	RO      string `xml:"ro,omitempty"`
}

type xmlCustomer struct {
	Code    string `xml:"code,attr,omitempty"`
	Address string `xml:"address,attr"`
}

type xmlDeliveryCustomer struct {
	Code    string            `xml:"code,attr,omitempty"`
	Address string            `xml:"address,attr"`
	Date    string            `xml:"date,attr"`
	Method  xmlDeliveryMethod `xml:"delivery-method"`
}

type xmlDeliveryMethod struct {
	Code    string     `xml:"code,attr"`
	Freight xmlFreight `xml:"freight"`
}

type xmlFreight struct {
	Prepaid *struct{} `xml:"prepaid"`
	Collect *struct{} `xml:"collect"`
}

type xmlRequestOptions struct {
	POReceived string `xml:"po-received,attr"`
	CRIF       string `xml:"crif,attr"`
	CRIFShip   string `xml:"crif-ship,attr,omitempty"`
}

type xmlLines struct {
	Lines []xmlLine `xml:"line"`
}

type xmlLine struct {
	Quantity int64     `xml:"quantity,attr"`
	RunType  string    `xml:"run-type,attr"`
	Option   xmlOption `xml:"option"`
	Item     xmlItem   `xml:"item"`
}

type xmlOption struct {
	BookStockJob            *xmlPricedOption `xml:"book-stock-job"`
	FailIfInsufficientWIP   *xmlPricedOption `xml:"fail-if-insufficient-wip"`
	FailIfInsufficientStock *xmlPricedOption `xml:"fail-if-insufficient-stock"`
}

type xmlPricedOption struct {
	JobNumber string `xml:"job-number,attr,omitempty"`
	Price     string `xml:"price,attr"`
	PriceQty  int    `xml:"price-qty,attr"`
}

type xmlItem struct {
	CustomerReferenceNumber string `xml:"customer-reference-number,omitempty"`
	ItemCode                string `xml:"item-code,omitempty"`
}

// encode renders a complete order-entry document: declaration, DOCTYPE, comment, body
func encode(doc xmlOrders, dtd, comment string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	fmt.Fprintf(&buf, "<!DOCTYPE orders SYSTEM %q>\n\n", dtd)
	fmt.Fprintf(&buf, "<!--%s -->\n\n", comment)

	enc := xml.NewEncoder(&buf)
	enc.Indent("", "   ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode orders: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode orders: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
