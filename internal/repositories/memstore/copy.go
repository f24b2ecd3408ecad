package memstore

import "commerce_backend/internal/models"

func copyIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyLevel(l models.StockLevel) models.StockLevel {
	return models.StockLevel{
		StockQuantity:     copyIntPtr(l.StockQuantity),
		DamagedQuantity:   copyIntPtr(l.DamagedQuantity),
		LowStockThreshold: copyIntPtr(l.LowStockThreshold),
		StockStatus:       l.StockStatus,
	}
}

func copyItem(it *models.CatalogItem) *models.CatalogItem {
	c := *it
	c.StockLevel = copyLevel(it.StockLevel)
	if it.OptionGroups != nil {
		c.OptionGroups = make([]models.OptionGroup, len(it.OptionGroups))
		for i, g := range it.OptionGroups {
			c.OptionGroups[i] = g
			c.OptionGroups[i].Options = make([]models.Option, len(g.Options))
			for j := range g.Options {
				c.OptionGroups[i].Options[j] = *copyOption(&g.Options[j])
			}
		}
	}
	return &c
}

func copyOption(o *models.Option) *models.Option {
	c := *o
	c.StockLevel = copyLevel(o.StockLevel)
	return &c
}

func copyVariant(v *models.ItemVariant) *models.ItemVariant {
	c := *v
	c.StockLevel = copyLevel(v.StockLevel)
	return &c
}

func copyAudit(a models.StockAudit) models.StockAudit {
	c := a
	if a.Reason != nil {
		r := *a.Reason
		c.Reason = &r
	}
	if a.ActorID != nil {
		id := *a.ActorID
		c.ActorID = &id
	}
	if a.OrderID != nil {
		id := *a.OrderID
		c.OrderID = &id
	}
	return c
}

func copyOrder(o *models.Order) *models.Order {
	c := *o
	if o.RefundedAt != nil {
		t := *o.RefundedAt
		c.RefundedAt = &t
	}
	c.Items = make([]models.OrderItem, len(o.Items))
	for i, it := range o.Items {
		c.Items[i] = it
		sel := make(models.SelectedOptions, len(it.SelectedOptions))
		for g, ids := range it.SelectedOptions {
			sel[g] = append([]int64(nil), ids...)
		}
		c.Items[i].SelectedOptions = sel
	}
	return &c
}
