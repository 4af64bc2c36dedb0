package source

// CoopItem is a record from the Coop product search API. availableOnline is a boolean;
// older exports carry the shelf text under "stock" instead.
type CoopItem struct {
	record
	ProductID    Value         `json:"product_id"`
	EAN          Value         `json:"ean"`
	Availability AvailableFlag `json:"availability"`
	Stock        *string       `json:"stock"`
}

func (i CoopItem) StoreName() string { return "coop" }

func (i CoopItem) Fields() Fields {
	f := i.record.fields()
	f.sourceID(i.ProductID, i.EAN)
	f.Availability = i.Availability.token
	if stock := nonEmpty(i.Stock); stock != nil {
		f.Availability = stock
	}
	return f
}

// AxfoodItem is a record from the Axfood commerce platform shared by Hemköp and Willys. The
// platform reports outOfStock, and crawler exports store that flag as "availability".
type AxfoodItem struct {
	record
	Store        string         `json:"-"`
	Code         Value          `json:"code"`
	OutOfStock   OutOfStockFlag `json:"outOfStock"`
	Availability OutOfStockFlag `json:"availability"`
}

func (i AxfoodItem) StoreName() string { return i.Store }

func (i AxfoodItem) Fields() Fields {
	f := i.record.fields()
	f.sourceID(i.Code)
	f.Availability = i.Availability.token
	if i.OutOfStock.token != nil {
		f.Availability = i.OutOfStock.token
	}
	return f
}

// ICAItem is a record from the ICA handla API.
type ICAItem struct {
	record
	ProductID    Value         `json:"product_id"`
	RetailerID   Value         `json:"retailer_product_id"`
	Availability AvailableFlag `json:"availability"`
}

func (i ICAItem) StoreName() string { return "ica" }

func (i ICAItem) Fields() Fields {
	f := i.record.fields()
	f.sourceID(i.ProductID, i.RetailerID)
	f.Availability = i.Availability.token
	return f
}

// MathemItem is a record from the Mathem storefront data. Availability is an object with a
// status code, or a plain code string.
type MathemItem struct {
	record
	ID           Value         `json:"id"`
	Availability AvailableFlag `json:"availability"`
}

func (i MathemItem) StoreName() string { return "mathem" }

func (i MathemItem) Fields() Fields {
	f := i.record.fields()
	f.sourceID(i.ID)
	f.Availability = i.Availability.token
	return f
}

// GenericItem is the layout accepted for configured stores without a dedicated crawler
// format.
type GenericItem struct {
	record
	Store        string        `json:"-"`
	ID           Value         `json:"id"`
	Availability AvailableFlag `json:"availability"`
	Stock        *string       `json:"stock"`
}

func (i GenericItem) StoreName() string { return i.Store }

func (i GenericItem) Fields() Fields {
	f := i.record.fields()
	f.sourceID(i.ID)
	f.Availability = i.Availability.token
	if stock := nonEmpty(i.Stock); stock != nil {
		f.Availability = stock
	}
	return f
}
